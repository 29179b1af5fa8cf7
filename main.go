/*
Copyright 2023 Markus Papenbrock
*/
package main

import "github.com/racecontroll/racecontrol/cmd"

func main() {
	cmd.Execute()
}
