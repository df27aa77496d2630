package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"

	grpc_adapter "github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/in/grpc"
	grpc_pool "github.com/JoeShih716/go-mem-wallet/pkg/grpc"
)

type role int

const (
	rolePublic role = iota
	roleAccount
	roleAdmin
)

type command struct {
	method string
	role   role
	usage  string
}

// commands 子命令 -> RPC 方法，參數一律為 key=value
var commands = map[string]command{
	"signup":   {"SignUp", rolePublic, "id=<email> name=<name> credential=<password>"},
	"login":    {"Login", rolePublic, "id=<email> credential=<password>"},
	"balance":  {"GetAccount", roleAccount, ""},
	"deposit":  {"Deposit", roleAccount, "amount=<n> [method=<JazzCash|EasyPaisa|Bank Transfer>]"},
	"transfer": {"Transfer", roleAccount, "to=<email> amount=<n>"},
	"withdraw": {"Withdraw", roleAccount, "amount=<n>"},
	"history":  {"History", roleAccount, ""},
	"recharge": {"Recharge", roleAccount, "mobile=<11 digits> operator=<Jazz|Zong|Telenor|Ufone> amount=<n>"},
	"profile":  {"UpdateProfile", roleAccount, "[name=<name>] [new_credential=<password>]"},

	"set-status": {"SetStatus", roleAdmin, "id=<email> status=<pending|active|blocked>"},
	"approve":    {"Approve", roleAdmin, "request_id=<n>"},
	"reject":     {"Reject", roleAdmin, "request_id=<n>"},
	"stats":      {"Stats", roleAdmin, ""},
	"dashboard":  {"Dashboard", roleAdmin, ""},
	"requests":   {"ListRequests", roleAdmin, "[account_id=<email>] [status=<Pending|Approved|Rejected>]"},
	"export":     {"Export", roleAdmin, "format=<csv|xlsx> [account_id=<email>] [status=<...>]"},
}

// numericFields 以數字送出的欄位，其餘都是字串 (手機號碼不可轉成數字)
var numericFields = map[string]bool{
	"amount":     true,
	"request_id": true,
}

func main() {
	addr := flag.String("addr", envOr("WALLET_ADDR", "localhost:50051"), "walletd gRPC address")
	account := flag.String("account", os.Getenv("WALLET_ACCOUNT_ID"), "account id for account commands")
	credential := flag.String("credential", os.Getenv("WALLET_CREDENTIAL"), "account password")
	adminUser := flag.String("admin-user", os.Getenv("WALLET_ADMIN_USER"), "admin user for admin commands")
	adminPassword := flag.String("admin-password", os.Getenv("WALLET_ADMIN_PASSWORD"), "admin password")
	timeout := flag.Duration("timeout", 10*time.Second, "per-call timeout")
	out := flag.String("out", "", "export: write the file here instead of printing the response")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		log.Printf("unknown command %q", flag.Arg(0))
		usage()
		os.Exit(2)
	}
	fields, err := parseFields(flag.Args()[1:])
	if err != nil {
		log.Fatal(err)
	}

	pool := grpc_pool.NewPool(grpc_pool.WithInterceptor(grpc_pool.TimeoutInterceptor(*timeout)))
	defer pool.Close()
	conn, err := pool.GetConnection(*addr)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}

	client := grpc_adapter.NewClient(conn)
	switch cmd.role {
	case roleAccount:
		client = client.AsAccount(*account, *credential)
	case roleAdmin:
		client = client.AsAdmin(*adminUser, *adminPassword)
	}

	resp, err := client.Call(context.Background(), cmd.method, fields)
	if err != nil {
		log.Fatalf("%s failed: %v", cmd.method, err)
	}

	if cmd.method == "Export" && *out != "" {
		data, err := base64.StdEncoding.DecodeString(resp.GetFields()["data"].GetStringValue())
		if err != nil {
			log.Fatalf("decode export data: %v", err)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			log.Fatalf("write %s: %v", *out, err)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), *out)
		return
	}

	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
	if err != nil {
		log.Fatalf("encode response: %v", err)
	}
	fmt.Println(string(b))
}

func parseFields(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q must be key=value", arg)
		}
		if numericFields[key] {
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			fields[key] = n
			continue
		}
		fields[key] = value
	}
	return fields, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: walletctl [flags] <command> [key=value ...]\n\ncommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-11s %s\n", name, commands[name].usage)
	}
	fmt.Fprintf(os.Stderr, "\nflags:\n")
	flag.PrintDefaults()
}
