// Package gmail provides a read-only client for the Gmail API.
//
// This package offers the functionality the fetch pipeline needs:
//   - Listing message IDs matching a search query (with pagination)
//   - Fetching full messages and parsing them into a simple Email value
//     (headers, decoded bodies, HTML stripped to text)
//   - Building Gmail search queries from label/window/since parameters
//
// The client authenticates through the unified Google OAuth token from
// the google package. Emails are never modified or sent; the pipeline
// only reads.
//
// Example usage:
//
//	ctx := context.Background()
//	client, err := gmail.NewClient(ctx, cfg, tokenStore)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	q := gmail.BuildQuery(gmail.QueryOptions{Label: "todoist-forward", Window: "7d"})
//	ids, err := client.ListMessageIDs(q, 10)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, id := range ids {
//	    email, err := client.FetchEmail(id)
//	    ...
//	}
package gmail
