// Package lexsieve provides a Go client for the LexSieve HTTP API, the
// listserv research pipeline that turns a natural-language legal question
// into a filtered, relevance-ranked set of archived messages.
//
// A search is asynchronous: creating one returns immediately with the run
// in its current state, and the caller polls until the run reaches a
// terminal status.
//
//	client, _ := lexsieve.New("https://lexsieve.example.com",
//	    lexsieve.WithAPIKey(os.Getenv("LEXSIEVE_API_KEY")),
//	)
//
//	run, _ := client.CreateSearch(ctx, "Does a mechanics lien survive foreclosure?")
//	if run.NeedsClarification() {
//	    // Ask the user run.FollowUpQuestion, then:
//	    run, _ = client.AnswerSearch(ctx, run.ID, "I mean priority against a senior mortgage")
//	}
//	for !run.Terminal() {
//	    time.Sleep(time.Second)
//	    run, _ = client.GetSearch(ctx, run.ID)
//	}
//	results, _ := client.Results(ctx, run.ID)
//
// API failures carry their HTTP status and machine-readable code as an
// *APIError, and unwrap to the package sentinels so callers can use
// errors.Is:
//
//	if errors.Is(err, lexsieve.ErrBudgetExhausted) {
//	    // back off until tomorrow
//	}
package lexsieve
