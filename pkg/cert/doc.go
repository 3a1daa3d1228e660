// Package cert creates and stores the certificate material used by tls://
// transports in development and test deployments.
//
// A deployment normally runs one CA and issues a leaf per endpoint:
//
//	ca, _ := cert.NewCA("dosgi dev CA", 365*24*time.Hour)
//	leaf, _ := ca.Issue(cert.LeafOptions{CommonName: "node-1", Hosts: []string{"127.0.0.1"}})
//	_ = leaf.WriteFiles("node-1.pem", "node-1.key")
//
// Leaves carry both server and client authentication usages so the same
// identity can accept and dial mutually authenticated transports.
package cert
