// Command authctl logs in to an auth API and inspects the stored session.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/authkit/internal/authctl"
)

func main() {
	_ = godotenv.Load()
	os.Exit(authctl.Main(os.Args[1:]))
}
