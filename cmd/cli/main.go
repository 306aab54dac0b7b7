package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/downfa11-org/logstream/pkg/connector"
	"github.com/downfa11-org/logstream/pkg/controller"
	"github.com/downfa11-org/logstream/util"
	"github.com/google/uuid"
)

// printReply renders text replies as they are and POLL batch frames one message per line.
func printReply(reply []byte) {
	if !util.IsBatchFrame(reply) {
		fmt.Println(string(reply))
		return
	}
	batch, err := util.DecodeBatchMessages(reply)
	if err != nil {
		fmt.Println("ERROR: decode batch:", err)
		return
	}
	fmt.Printf("OK messages=%d\n", len(batch.Messages))
	for _, m := range batch.Messages {
		fmt.Printf("  offset=%d partition=%d id=%s payload=%s\n", m.Offset, m.Partition, m.ID, m.Payload)
	}
}

func main() {
	b := connector.NewBroker()
	ch := controller.NewCommandHandler(b)
	ctx := &controller.ClientContext{ClientID: uuid.NewString()}

	fmt.Println("🔹 In-memory broker ready. Type HELP for commands, LOGIN first.")
	fmt.Println("")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "EXIT") {
			break
		}
		printReply(ch.HandleCommand(line, ctx))
	}
}
