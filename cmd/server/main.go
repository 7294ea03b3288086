package main

import (
	"os"

	"flow-stream/backend/internal/app"
)

// @title Flow Stream API
// @version 1.0
// @description Resumable chat generation over Server-Sent Events.
// @BasePath /api
func main() {
	os.Exit(app.Run())
}
