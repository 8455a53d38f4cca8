// Package fetch downloads remote images safely. A Validator decides whether a
// URL points at a publicly routable host before any byte is transferred, and a
// Fetcher performs the download against the vetted IP address so that a DNS
// answer cannot change between the check and the request.
package fetch
