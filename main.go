package main

import "ingest-router/internal/app"

func main() {
	app.Execute()
}
