// Package main mints development credentials for the realtime service.
//
// Production tokens come from the account service; this tool exists so local
// clients can connect without standing that service up.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/inkboard/inkboard/internal/platform/config"
	"github.com/inkboard/inkboard/internal/services/realtime/token"
)

func main() {
	secret := flag.String("secret", os.Getenv("INKBOARD_JWT_SECRET"), "shared signing secret")
	userID := flag.Int64("user-id", 1, "user id claim")
	username := flag.String("username", "", "username claim")
	ttl := flag.Duration("ttl", 7*24*time.Hour, "token lifetime")
	flag.Parse()

	signed, err := token.Sign(*secret, token.Identity{ID: *userID, Username: *username}, *ttl, nil)
	if err != nil {
		config.Exitf("sign token: %v", err)
	}
	fmt.Println(signed)
}
