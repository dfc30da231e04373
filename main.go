package main

import "github.com/shouni/go-news-etl/cmd"

func main() {
	cmd.Execute()
}
