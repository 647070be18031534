package main

import "github.com/Norgate-AV/cmake-analyze/cmd"

func main() {
	cmd.Execute()
}
