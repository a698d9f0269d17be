package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
)

// Mints an internal-ops token for the /internal endpoints. Signed with
// API_SECRET, so run it with the same environment as the server.
func main() {
	caller := flag.String("caller", "scheduler", "who the token is minted for")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	token, err := utils.JwtGenerateInternal(*caller, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
