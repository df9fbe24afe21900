// Command espcanctl is a minimal, explicitly non-rendering host companion
// for the bridge: raw protocol passthrough between stdin/stdout and the
// bridge's TCP port, plus a named command-macro table loaded from an INI
// file for scripting repeated filter setups.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/Simsys/espcand/internal/datagram"
)

func main() {
	addr := flag.String("addr", "", "bridge address host:port (overrides config's [bridge] ip)")
	configPath := flag.String("config", "", "path to an INI macro config file")
	flag.Parse()

	var cfg *Config
	if *configPath != "" {
		c, err := LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = c
	} else {
		cfg = &Config{Commands: map[string]Command{}}
	}

	target := *addr
	if target == "" {
		target = cfg.IP
	}
	if target == "" {
		log.Fatal("no bridge address given (use -addr or a config [bridge] ip)")
	}

	client, err := Dial(target)
	if err != nil {
		log.Fatalf("dial %s: %v", target, err)
	}
	defer client.Close()
	fmt.Printf("connected to %s\n", target)

	go printBridgeReplies(client)

	runPrompt(client, cfg)
}

// printBridgeReplies prints every datagram the bridge sends, until the
// connection is closed.
func printBridgeReplies(client *Client) {
	for {
		item, err := client.ReadItem()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println("bridge closed the connection")
				os.Exit(0)
			}
			fmt.Fprintf(os.Stderr, "read error: %v\n", err)
			return
		}
		fmt.Println(formatItem(item))
	}
}

// runPrompt reads lines from stdin: a leading ':' names a macro from
// cfg.Commands, run as its sequence of datagrams in order; anything else
// is sent verbatim as one raw datagram line.
func runPrompt(client *Client, cfg *Config) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			name := strings.TrimPrefix(line, ":")
			cmd, ok := cfg.Commands[name]
			if !ok {
				fmt.Printf("unknown macro %q\n", name)
				continue
			}
			for _, l := range cmd.Cmds {
				if err := client.SendLine(l); err != nil {
					fmt.Fprintf(os.Stderr, "send error: %v\n", err)
				}
			}
			continue
		}
		if err := client.SendLine(line); err != nil {
			fmt.Fprintf(os.Stderr, "send error: %v\n", err)
		}
	}
}

func formatItem(item datagram.Item) string {
	switch item.Kind {
	case datagram.ReceivedFrame:
		return fmt.Sprintf("rf id=0x%x dlc=%d data=% x", item.Frame.ID, item.Frame.DLC, item.Frame.Data[:item.Frame.DLC])
	case datagram.ErrorItem:
		return fmt.Sprintf("err %s", item.Err)
	case datagram.PFilterItem:
		return fmt.Sprintf("pfilt duration=%d ones=0x%x zeros=0x%x", item.PFilter.Duration, item.PFilter.Ones, item.PFilter.Zeros)
	case datagram.NFilterItem:
		return fmt.Sprintf("nfilt ones=0x%x zeros=0x%x", item.NFilter.Ones, item.NFilter.Zeros)
	case datagram.MagicItem:
		return "magic"
	case datagram.Echo:
		return "echo"
	case datagram.End:
		return "end"
	default:
		return fmt.Sprintf("%+v", item)
	}
}
