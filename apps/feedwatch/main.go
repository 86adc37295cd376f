// Command feedwatch tails a class's question feed in the terminal. It logs
// in, then polls the API the same way the dashboards do and prints every
// question as it arrives.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"qugrow/core"
	"qugrow/core/feed"
	"qugrow/core/question"
)

var readPasswordFunc = term.ReadPassword

func main() {
	logger := log.New(os.Stdout, "FEED : ", log.LstdFlags)

	addr := flag.String("addr", "http://localhost:8000", "API base URL")
	uname := flag.String("username", "", "account to watch the feed as")
	flag.Parse()

	if *uname == "" {
		flag.Usage()
		os.Exit(1)
	}

	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		logger.Fatal(err)
	}

	token, usr, err := login(*addr, *uname, string(pwd))
	if err != nil {
		logger.Fatal(err)
	}
	logger.Printf("watching class %q as %s", usr.ClassName, usr.Username)

	conf := core.NewConfig()
	list := &terminalList{out: logger}
	ctrl := feed.NewController(feed.Deps{
		Fetcher:  &feed.HTTPFetcher{BaseURL: *addr, Token: token},
		List:     list,
		Notify:   func(n int) { logger.Printf("%d new question(s)", n) },
		Interval: conf.Feed.PollInterval,
		Delay:    conf.Feed.StartDelay,
	})

	page := feed.PageStudent
	if usr.UserType == "teacher" {
		page = feed.PageTeacher
	}
	if err = ctrl.Start(feed.Session{UserID: usr.ID, ClassName: usr.ClassName}, page); err != nil {
		logger.Fatal(err)
	}
	defer ctrl.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Print("stopped")
}

type loginUser struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	UserType  string `json:"user_type"`
	ClassName string `json:"class_name"`
}

func login(baseURL, uname, pwd string) (string, loginUser, error) {
	payload, _ := json.Marshal(map[string]string{"username": uname, "password": pwd})
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", loginUser{}, errors.Wrap(err, "logging in")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", loginUser{}, errors.Errorf("logging in: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Token string    `json:"token"`
		User  loginUser `json:"user"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", loginUser{}, errors.Wrap(err, "decoding login response")
	}
	return body.Token, body.User, nil
}

// terminalList renders the feed as log lines; ids accumulate so the
// controller's duplicate guard works the same as on the dashboards.
type terminalList struct {
	out *log.Logger
	ids []int
}

var _ feed.List = (*terminalList)(nil)

func (l *terminalList) IDs() []int { return l.ids }

func (l *terminalList) Prepend(items []question.Question) {
	for _, q := range items {
		l.ids = append(l.ids, q.ID)
		l.out.Printf("[#%d] %s: %s (%d likes, %d comments)",
			q.ID, q.AuthorName, q.Content, q.LikeCount, q.CommentCount)
	}
}
