package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeHeartbeat  = 1
	MsgTypeJoinRoom   = 101
	MsgTypeLeaveRoom  = 102
	MsgTypeCreateRoom = 103
	MsgTypeStartGame  = 104
	MsgTypeCommand    = 201
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, body interface{}) error {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return err
		}
	}
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func atoi(fields []string, i int) int {
	if i >= len(fields) {
		return 0
	}
	n, _ := strconv.Atoi(fields[i])
	return n
}

func command(name string, payload map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"command": name, "payload": payload}
}

// parse turns one input line into a message. ok is false for unknown input.
func parse(line string) (msgID uint16, body interface{}, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, false
	}
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	switch fields[0] {
	case "create":
		return MsgTypeCreateRoom, map[string]interface{}{"roomId": arg(1), "nickname": arg(2)}, true
	case "join":
		return MsgTypeJoinRoom, map[string]interface{}{"roomId": arg(1), "nickname": arg(2)}, true
	case "leave":
		return MsgTypeLeaveRoom, nil, true
	case "start":
		return MsgTypeStartGame, nil, true
	case "begin":
		return MsgTypeCommand, command("begin-action", map[string]interface{}{"action": arg(1)}), true
	case "loan":
		return MsgTypeCommand, command("take-loan", map[string]interface{}{"amount": atoi(fields, 1)}), true
	case "repay":
		return MsgTypeCommand, command("repay-loan", map[string]interface{}{"amount": atoi(fields, 1)}), true
	case "buy":
		return MsgTypeCommand, command("buy-stock", map[string]interface{}{"stock": atoi(fields, 1), "quantity": atoi(fields, 2)}), true
	case "sell":
		return MsgTypeCommand, command("sell-stock", map[string]interface{}{"stock": atoi(fields, 1), "quantity": atoi(fields, 2)}), true
	case "gold":
		return MsgTypeCommand, command("buy-gold", map[string]interface{}{"quantity": atoi(fields, 1)}), true
	case "move":
		pos := map[string]int{"x": atoi(fields, 1), "y": atoi(fields, 2), "z": atoi(fields, 3)}
		return MsgTypeCommand, command("move", map[string]interface{}{"position": pos}), true
	case "advance":
		return MsgTypeCommand, command("advance-round", map[string]interface{}{"round": atoi(fields, 1)}), true
	case "event":
		return MsgTypeCommand, command("economic-event", nil), true
	}
	return 0, nil, false
}

func main() {
	addr := flag.String("addr", "localhost:8080", "game server address")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

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
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			log.Printf("<- RECV (ID: %d): %s", msgID, string(message[4:]))
		}
	}()

	log.Println("Commands: create <room> <nick> | join <room> <nick> | leave | start | begin <action> | loan <n> | repay <n> | buy <stock> <qty> | sell <stock> <qty> | gold <qty> | move <x> <y> <z> | advance <round> | event")

	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- reader.Text()
		}
		close(lines)
	}()

	// 保持连接. 所有写操作都在这个循环里
	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			if err := send(c, MsgTypeHeartbeat, nil); err != nil {
				log.Println("Heartbeat error:", err)
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
		case line, ok := <-lines:
			if !ok {
				return
			}
			msgID, body, ok := parse(line)
			if !ok {
				log.Printf("Unknown input %q", line)
				continue
			}
			if err := send(c, msgID, body); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT (ID: %d): %s", msgID, strings.TrimSpace(line))
		}
	}
}
