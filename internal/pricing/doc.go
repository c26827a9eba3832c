// Package pricing talks to the options pricing service.
//
// Builder turns normalized position rows into getIVol requests and getPriceVanilla
// payloads. Client performs one GET per request with resty. Batch runs a list of
// requests through the client, spacing calls with a rate limiter and bounding
// concurrency with an errgroup. A failed call never aborts a batch: it becomes a
// PricingResult with Error set, at the same index as its request.
package pricing
