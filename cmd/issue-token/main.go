package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/smarttransit/booking-engine/internal/utils"
	"github.com/smarttransit/booking-engine/pkg/jwt"
)

// Issues access tokens for local testing and operator tooling, or prints a fresh signing secret.
func main() {
	var (
		userFlag   string
		rolesFlag  string
		expiry     time.Duration
		genSecret  bool
		secretSize int
	)
	flag.StringVar(&userFlag, "user", "", "user id (uuid) to embed; a random one is used when empty")
	flag.StringVar(&rolesFlag, "roles", jwt.RolePassenger, "comma separated roles: passenger, operator, admin")
	flag.DurationVar(&expiry, "expiry", time.Hour, "token lifetime")
	flag.BoolVar(&genSecret, "generate-secret", false, "print a new JWT_SECRET and exit")
	flag.IntVar(&secretSize, "secret-bytes", 64, "random bytes in a generated secret")
	flag.Parse()

	if genSecret {
		secret, err := utils.GenerateSecret(secretSize)
		if err != nil {
			log.Fatalf("Failed to generate secret: %v", err)
		}
		fmt.Println("Add this to your .env file:")
		fmt.Println()
		fmt.Printf("JWT_SECRET=%s\n", secret)
		fmt.Println()
		fmt.Println("⚠️  IMPORTANT: Keep this secret safe and never commit it to version control!")
		return
	}

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set (run with -generate-secret to create one)")
	}

	userID := uuid.New()
	if userFlag != "" {
		parsed, err := uuid.Parse(userFlag)
		if err != nil {
			log.Fatalf("invalid -user: %v", err)
		}
		userID = parsed
	}

	var roles []string
	for _, r := range strings.Split(rolesFlag, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}

	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "smarttransit-identity"
	}

	service := jwt.NewService(secret, issuer, expiry)
	token, err := service.GenerateAccessToken(userID, roles)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Printf("user_id: %s\n", userID)
	fmt.Printf("roles:   %s\n", strings.Join(roles, ","))
	fmt.Printf("expires: %s\n", time.Now().Add(expiry).Format(time.RFC3339))
	fmt.Println()
	fmt.Println(token)
}
