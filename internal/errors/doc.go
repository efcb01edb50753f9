// Package errors provides coded, actionable diagnostics for the vstore CLI.
//
// Each error has a code (e.g., "V100") that maps to a category, a short
// message and an optional detail. Config parse errors carry the file
// position and the lines around it.
//
// # Error Categories
//
//   - config: config file missing, unparsable or invalid
//   - store: store and action lookups, declarations
//   - transport: HTTP and S3 failures
//   - cli: command usage and server failures
//
// # Usage
//
//	err := errors.New("V101").
//	    WithLocation("vstore.toml", 4, 9).
//	    WithSuggestion("Quote string values")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR V101: Invalid config file
//	//
//	//   vstore.toml:4:9
//	//
//	//        2 │ [server]
//	//        3 │ address = ":8080"
//	//      → 4 │ level = debug
//	//          │         ^
//	//        5 │
//	//
//	//   Hint: Quote string values
//
// Store and transport errors are converted with FromError, and async slot
// errors with FromSlotError. FprintAs writes an error as text, compact or
// JSON, matching the CLI's --output flag.
package errors
