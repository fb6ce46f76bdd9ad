package main

import "github.com/linkloop/auth-service/cmd"

func main() {
	cmd.Execute()
}
