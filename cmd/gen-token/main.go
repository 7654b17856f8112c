// Mints a bearer token for service-to-service callers and local testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
)

func main() {
	id := flag.String("id", "", "Required: actor id")
	name := flag.String("name", "", "Required: actor name")
	role := flag.String("role", "operador", "Actor role (operador|admin)")
	flag.Parse()

	if strings.TrimSpace(*id) == "" || strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "--id and --name are required")
		os.Exit(1)
	}

	token, err := utils.JwtGenerate(*id, *name, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
