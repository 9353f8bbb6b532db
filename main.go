package main

import "github.com/waypoint-hq/field-expense/cmd"

func main() {
	cmd.Execute()
}
