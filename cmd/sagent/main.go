// Command sagent runs saga definitions: tasks execute in dependency order and
// completed tasks are compensated in reverse when one fails.
package main

func main() {
	Execute()
}
