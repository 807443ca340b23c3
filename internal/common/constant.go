package common

// AuthorizationHeaderName carries the bearer access token on inbound HTTP requests.
const AuthorizationHeaderName = "Authorization"

// RequestIDHeaderName is echoed back on every response.
const RequestIDHeaderName = "X-Request-ID"
