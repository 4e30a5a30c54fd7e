package main

import "github.com/offlinefirst/keytrace/internal/cmd"

func main() {
	cmd.Execute()
}
