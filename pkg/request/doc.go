// Package request is a small HTTP client used for the REST surface of
// the agent service: agent lookup, health checks and similar sibling
// calls that ride next to the live channel.
//
// A Client is built once from the service base URL and hands out
// per-request Builders:
//
//	client, err := request.NewClient("https://agents.example.com",
//	    request.WithHeader("Authorization", "Bearer "+apiKey),
//	    request.WithMiddleware(middleware.Prometheus()),
//	)
//	if err != nil {
//	    return err
//	}
//
//	var agent AgentInfo
//	resp, err := client.Get("/api/agents/support-bot").
//	    Param("pid", projectID).
//	    Do(ctx)
//	if err != nil {
//	    return err
//	}
//	if err := resp.JSON(&agent); err != nil {
//	    return err
//	}
//
// Middleware wraps the execution path as Doer decorators; the first
// middleware passed is the outermost. Non-2xx responses surface as
// *StatusError so callers can branch on the status code without
// reading the body themselves.
package request
