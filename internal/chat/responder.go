package chat

import (
	"context"
	"math/rand"
	"strings"

	"conflux/internal/logger"
)

// TradeStarter kicks off a trading cycle and returns its cycle id.
type TradeStarter func(ctx context.Context) (string, error)

// ProfitReporter composes the reply for the "calculate my profit" command.
type ProfitReporter func(ctx context.Context) (string, error)

const greeting = "Agent online. Trading parameters active. How can I assist you?"

var cannedReplies = []string{
	"Current market volatility is within acceptable parameters. No action required.",
	"Analyzing BTC/ETH correlation patterns. Recommendation: maintain current position.",
	"Alert: Detected potential arbitrage opportunity between exchanges. Evaluating risk profile.",
	"Position secured with multi-signature verification. Security protocols active.",
	"Market indicators suggest increased volatility in next 4-6 hours. Adjusting risk parameters.",
}

// Responder publishes agent replies into the hub. Recognized commands are
// "execute trade" and "calculate my profit"; everything else gets a canned
// status reply.
type Responder struct {
	hub      *Hub
	start    TradeStarter
	profit   ProfitReporter
	greeting string
	pick     func(n int) int
}

func NewResponder(hub *Hub, start TradeStarter) *Responder {
	return &Responder{
		hub:      hub,
		start:    start,
		greeting: greeting,
		pick:     rand.Intn,
	}
}

// SetGreeting overrides the opening message. Empty keeps the default.
func (r *Responder) SetGreeting(msg string) {
	if strings.TrimSpace(msg) != "" {
		r.greeting = msg
	}
}

// SetProfitReporter enables the profit command. Without a reporter the
// command falls through to the canned replies.
func (r *Responder) SetProfitReporter(fn ProfitReporter) {
	r.profit = fn
}

// Greet posts the agent's opening message.
func (r *Responder) Greet() {
	r.hub.Publish(SenderAgent, "", r.greeting)
}

// HandleUserMessage publishes the user's line and produces the agent's
// reaction to it.
func (r *Responder) HandleUserMessage(ctx context.Context, content string) {
	r.hub.Publish(SenderUser, "", content)

	command := strings.ToLower(strings.TrimSpace(content))

	if command == "calculate my profit" && r.profit != nil {
		reply, err := r.profit(ctx)
		if err != nil {
			logger.Errorf("chat: profit report failed: %v", err)
			r.hub.Publish(SenderAgent, "", "Error calculating profit.")
			return
		}
		r.hub.Publish(SenderAgent, "", reply)
		return
	}

	if command == "execute trade" {
		cycleID, err := r.start(ctx)
		if err != nil {
			logger.Errorf("chat: trade start failed: %v", err)
			r.hub.Publish(SenderAgent, "", "Error starting trade execution.")
			return
		}
		r.hub.Publish(SenderAgent, cycleID, "Trade execution started.")
		return
	}

	r.hub.Publish(SenderAgent, "", cannedReplies[r.pick(len(cannedReplies))])
}
