package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"presence-hub/auth"
	"presence-hub/domain/event"
	"presence-hub/domain/presence"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

// consoleConfig is the slice of the hub environment the console needs to
// mint an operator token. The console is an ops tool: it runs next to the
// hub with access to the same .env.
type consoleConfig struct {
	JWTSecret          string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration  time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	OperatorSecretHash string        `env:"OPERATOR_SECRET_HASH"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "hub host:port")
	operator := flag.String("operator", "console", "operator user id")
	secret := flag.String("secret", "", "operator bootstrap secret")
	search := flag.String("search", "", "search the activity log instead of watching")
	sessions := flag.Bool("sessions", false, "list open sessions instead of watching")
	flag.Parse()

	if err := run(*addr, *operator, *secret, *search, *sessions); err != nil {
		fmt.Fprintf(os.Stderr, "console error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, operator, secret, search string, sessions bool) error {
	_ = godotenv.Load()
	var config consoleConfig
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if config.OperatorSecretHash != "" {
		ok, err := auth.CompareOperatorSecret(secret, config.OperatorSecretHash)
		if err != nil {
			return fmt.Errorf("secret verification failed: %w", err)
		}
		if !ok {
			return fmt.Errorf("operator secret rejected")
		}
	}

	token, err := auth.GenerateToken([]byte(config.JWTSecret), operator,
		[]string{string(presence.RoleOperators)}, config.AuthTokenDuration)
	if err != nil {
		return fmt.Errorf("token minting failed: %w", err)
	}

	switch {
	case search != "":
		return printSearch(addr, token, search)
	case sessions:
		return printSessions(addr, token)
	default:
		return watch(addr, token)
	}
}

// watch streams live hub traffic to the terminal, one colored line per
// message.
func watch(addr, token string) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	color.Green.Printf("connected to %s, watching...\n", addr)
	for {
		var m event.Message
		if err := conn.ReadJSON(&m); err != nil {
			return fmt.Errorf("stream closed: %w", err)
		}
		printMessage(m)
	}
}

func printMessage(m event.Message) {
	stamp := m.Timestamp.Format(time.TimeOnly)
	data, _ := json.Marshal(m.Data)
	switch m.Type {
	case event.TypeUserStatusChange:
		color.Cyan.Printf("%s %-20s %s\n", stamp, m.Type, data)
	case event.TypeStatsChanged:
		color.Yellow.Printf("%s %-20s %s\n", stamp, m.Type, data)
	case event.TypeSystemMessage, event.TypeAdminNotification:
		color.Red.Printf("%s %-20s %s\n", stamp, m.Type, data)
	default:
		fmt.Printf("%s %-20s %s\n", stamp, m.Type, data)
	}
}

func printSearch(addr, token, query string) error {
	var recs []event.ActivityRecord
	if err := getJSON(addr, token, "/admin/activity/search?q="+url.QueryEscape(query), &recs); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"When", "User", "Kind", "Payload"})
	for _, rec := range recs {
		table.Append([]string{
			rec.OccurredAt.Format(time.DateTime),
			rec.UserID,
			string(rec.Kind),
			string(rec.Payload),
		})
	}
	table.Render()
	return nil
}

func printSessions(addr, token string) error {
	var recs []presence.SessionRecord
	if err := getJSON(addr, token, "/admin/sessions", &recs); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User", "Transport", "Started", "IP", "Agent"})
	for _, rec := range recs {
		table.Append([]string{
			rec.UserID,
			rec.TransportID,
			rec.StartedAt.Format(time.DateTime),
			rec.Meta.IP,
			rec.Meta.Agent,
		})
	}
	table.Render()
	return nil
}

func getJSON(addr, token, path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, "http://"+addr+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hub returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
