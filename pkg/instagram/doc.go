// Package instagram holds the platform-specific knowledge the browser adapter
// needs: URLs, username rules, how profile links and counter labels are
// shaped, and the selectors for the elements it interacts with.
package instagram
