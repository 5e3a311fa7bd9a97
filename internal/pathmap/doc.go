// Package pathmap maps paths between the source and destination trees and
// derives the stable identity that keys reconciliation.
package pathmap
