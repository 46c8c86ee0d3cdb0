package main

import "towebp/cmd"

func main() {
	cmd.Execute()
}
