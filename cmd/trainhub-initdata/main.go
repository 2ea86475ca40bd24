// trainhub-initdata signs Telegram mini-app init data for local development.
// The output can be sent as "Authorization: tma <payload>" to /api/auth/login
// of a server configured with the same bot token.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/trainhub/trainhub/pkg/initdata"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now()); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, now time.Time) error {
	var (
		botToken string
		user     initdata.User
		age      time.Duration
		queryID  string
		header   bool
	)

	flagSet := pflag.NewFlagSet("trainhub-initdata", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVar(&botToken, "bot-token", os.Getenv("TRAINHUB_BOT_TOKEN"), "bot token to sign with (default: $TRAINHUB_BOT_TOKEN)")
	flagSet.Int64Var(&user.ID, "user-id", 0, "telegram user id (required)")
	flagSet.StringVar(&user.Username, "username", "", "telegram username")
	flagSet.StringVar(&user.FirstName, "first-name", "", "first name")
	flagSet.StringVar(&user.LastName, "last-name", "", "last name")
	flagSet.StringVar(&user.PhotoURL, "photo-url", "", "profile photo URL")
	flagSet.StringVar(&user.LanguageCode, "language", "", "language code")
	flagSet.DurationVar(&age, "age", 0, "backdate auth_date by this duration")
	flagSet.StringVar(&queryID, "query-id", "", "query_id field to include")
	flagSet.BoolVar(&header, "header", false, "print a complete Authorization header value")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if botToken == "" {
		return fmt.Errorf("--bot-token or TRAINHUB_BOT_TOKEN is required")
	}
	if user.ID <= 0 {
		return fmt.Errorf("--user-id must be a positive telegram id")
	}

	extra := map[string]string{}
	if queryID != "" {
		extra["query_id"] = queryID
	}

	raw, err := initdata.Sign(user, now.Add(-age), extra, botToken)
	if err != nil {
		return err
	}

	if header {
		raw = "tma " + raw
	}
	_, err = fmt.Fprintln(out, raw)
	return err
}
