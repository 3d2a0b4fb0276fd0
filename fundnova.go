package fundnova

const Version = "v0.4.1"

// DefaultCurrency is the single settlement currency of the platform.
// Multi-currency support is explicitly out of scope.
const DefaultCurrency = "RON"
