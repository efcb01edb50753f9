// Package transport provides async action sources for stores: a JSON HTTP
// client and an S3 object reader.
//
// Errors from both are *store.TransportError values, so the dispatcher can
// tell cancellations, HTTP error statuses, missing responses and request
// setup failures apart:
//
//	api := transport.NewClient("https://api.example.com")
//	reg, err := store.Create(store.Declarations{
//	    "user": {
//	        "fetchUser": api.Action("GET", "/users/{0}"),
//	    },
//	})
package transport
