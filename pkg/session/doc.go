// Package session maintains a client connection to an agent channel.
//
// A Session owns one WebSocket connection at a time and drives it
// through a small state machine:
//
//	Idle ──Connect──▶ Connecting ──▶ Open ──Disconnect──▶ Closing ──▶ Idle
//	  ▲                   │            │
//	  │    (max attempts) │            │ (abnormal close)
//	  └── Reconnecting ◀──┴────────────┘
//
// Connects are single flight: concurrent Connect calls share one dial
// and observe the same outcome. When an open connection drops without
// a normal closure, the session schedules a reconnect with exponential
// backoff (base delay doubled per attempt, capped) until either a dial
// succeeds or the attempt budget is exhausted. A manual Disconnect
// suppresses reconnection until the next Connect.
//
// Send accepts messages in every state. While the connection is not
// open, messages queue in order and are flushed as soon as the
// connection opens, before any later Send can reach the wire. Inbound
// transport chunks feed a protocol.StreamDecoder and completed
// messages are handed to the registered handler one at a time, in
// completion order.
//
// Basic usage:
//
//	sess, err := session.New(&session.Config{
//	    ServiceURL: "https://agents.example.com",
//	    LookupKey:  "support-bot",
//	    ProjectID:  "proj-1234",
//	})
//	if err != nil {
//	    return err
//	}
//	sess.OnMessage(func(msg *protocol.Message) error {
//	    ...
//	    return nil
//	})
//	if err := sess.Connect(ctx); err != nil {
//	    return err
//	}
//	msg, err := protocol.NewCall("req-1", "summarize", input)
//	if err != nil {
//	    return err
//	}
//	status, err := sess.Send(msg)
package session
