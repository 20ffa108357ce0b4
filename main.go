package main

import "github.com/qaliblog/tradology/cmd"

func main() {
	cmd.Execute()
}
