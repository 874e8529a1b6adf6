package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/obelousov/authkeeper/internal/adminctl"
)

func main() {
	addr := flag.String("a", "http://localhost:8080", "server address")
	email := flag.String("e", "", "email of the account to register")
	displayName := flag.String("n", "", "display name of the account")
	flag.Parse()

	reader := bufio.NewReader(os.Stdin)

	var err error
	if *email == "" {
		*email, err = adminctl.GetSimpleText(reader, "Email", os.Stdout)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}
	if *displayName == "" {
		*displayName, err = adminctl.GetSimpleText(reader, "Display name", os.Stdout)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	password, err := adminctl.GetPassword(os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}

	client := adminctl.NewClient(*addr)
	pair, err := client.Register(context.Background(), *email, string(password), *displayName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println("account registered")
	fmt.Printf("access token:  %s\n", pair.AccessToken)
	fmt.Printf("refresh token: %s\n", pair.RefreshToken)
}
