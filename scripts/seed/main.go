// Command seed loads an organization's business configuration, staff and
// resources into a running API and generates the first availability window.
//
// Usage:
//
//	ADMIN_JWT_SECRET=... go run ./scripts/seed testdata/seed-org.json
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type seedFile struct {
	OrgID     string            `json:"org_id"`
	Config    json.RawMessage   `json:"config"`
	Staff     []json.RawMessage `json:"staff"`
	Resources []json.RawMessage `json:"resources"`
	Generate  *struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	} `json:"generate,omitempty"`
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/seed <seed-file.json>")
		os.Exit(1)
	}

	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Println("Error: ADMIN_JWT_SECRET environment variable not set")
		os.Exit(1)
	}
	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("Error reading seed file: %v\n", err)
		os.Exit(1)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		fmt.Printf("Error parsing seed file: %v\n", err)
		os.Exit(1)
	}
	if seed.OrgID == "" {
		fmt.Println("Error: seed file has no org_id")
		os.Exit(1)
	}

	token, err := adminToken(secret, seed.OrgID)
	if err != nil {
		fmt.Printf("Error signing token: %v\n", err)
		os.Exit(1)
	}
	c := &client{base: apiURL, token: token, http: &http.Client{Timeout: 30 * time.Second}}
	orgPath := "/admin/orgs/" + url.PathEscape(seed.OrgID)

	fmt.Printf("Seeding org %s at %s\n", seed.OrgID, apiURL)

	failed := 0
	if len(seed.Config) > 0 {
		if err := c.send(http.MethodPut, orgPath+"/config", seed.Config); err != nil {
			fmt.Printf("  config: %v\n", err)
			failed++
		} else {
			fmt.Println("  config: ok")
		}
	}
	for _, raw := range seed.Staff {
		id := idOf(raw)
		if err := c.send(http.MethodPut, orgPath+"/staff/"+url.PathEscape(id), raw); err != nil {
			fmt.Printf("  staff %s: %v\n", id, err)
			failed++
			continue
		}
		fmt.Printf("  staff %s: ok\n", id)
	}
	for _, raw := range seed.Resources {
		id := idOf(raw)
		if err := c.send(http.MethodPut, orgPath+"/resources/"+url.PathEscape(id), raw); err != nil {
			fmt.Printf("  resource %s: %v\n", id, err)
			failed++
			continue
		}
		fmt.Printf("  resource %s: ok\n", id)
	}
	if seed.Generate != nil {
		body, _ := json.Marshal(seed.Generate)
		if err := c.send(http.MethodPost, orgPath+"/availability/generate", body); err != nil {
			fmt.Printf("  generate: %v\n", err)
			failed++
		} else {
			fmt.Printf("  generate %s..%s: ok\n", seed.Generate.StartDate, seed.Generate.EndDate)
		}
	}

	if failed > 0 {
		fmt.Printf("%d step(s) failed\n", failed)
		os.Exit(1)
	}
	fmt.Println("Seeding complete")
}

// adminToken signs a short-lived admin token scoped to orgID.
func adminToken(secret, orgID string) (string, error) {
	claims := jwt.MapClaims{
		"sub":    "seed",
		"org_id": orgID,
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func idOf(raw json.RawMessage) string {
	var v struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &v)
	return v.ID
}

func (c *client) send(method, path string, body []byte) error {
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
