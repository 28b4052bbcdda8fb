// Command jackson serves the Project Jackson web shell.
package main

func main() {
	Execute()
}
