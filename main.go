package main

import "github.com/valpere/novtran/cmd"

func main() {
	cmd.Execute()
}
