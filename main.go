package main

import "issuerank/internal/app"

func main() {
	app.Main()
}
