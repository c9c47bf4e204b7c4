package main

import (
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"

	"github.com/wfunc/musicalchairs/game"
	"github.com/wfunc/musicalchairs/network"
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet, err := network.Encode(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	addr := flag.StringP("addr", "a", "localhost:8080", "game server address")
	roomID := flag.StringP("room", "r", "", "room to watch")
	heartbeat := flag.Duration("heartbeat", 10*time.Second, "heartbeat interval")
	raw := flag.Bool("raw", false, "print raw JSON payloads")
	noColor := flag.Bool("no-color", false, "never style the output")
	flag.Parse()

	if *roomID == "" {
		log.Fatal("--room is required")
	}
	if *heartbeat <= 0 {
		log.Fatal("--heartbeat must be positive")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws", RawQuery: url.Values{"room": {*roomID}}.Encode()}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	out := &renderer{w: os.Stdout, color: !*noColor && term.IsTerminal(os.Stdout.Fd())}
	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.Decode(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d: %v", len(message), err)
				continue
			}
			if *raw {
				log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
			}

			switch packet.MsgID {
			case network.MsgTypeHeartbeat:
			case network.MsgTypeRoomState:
				if !*raw {
					log.Printf("room state: %s", string(packet.Data))
				}
			default:
				var e game.Event
				if err := json.Unmarshal(packet.Data, &e); err != nil {
					log.Printf("Bad event payload (ID: %d): %v", packet.MsgID, err)
					continue
				}
				out.Notify(e)
				if e.Kind == game.EventGameOver {
					return
				}
			}
		}
	}()

	ticker := time.NewTicker(*heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
				log.Println("Write error:", err)
				return
			}
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
