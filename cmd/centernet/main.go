package main

import "github.com/MeKo-Tech/centernet/cmd/centernet/cmd"

func main() {
	cmd.Execute()
}
