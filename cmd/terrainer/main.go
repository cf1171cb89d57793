/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package main

func main() {
	Execute()
}
