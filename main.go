/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/lucas6028/silver-server/cmd"

func main() {
	cmd.Execute()
}
