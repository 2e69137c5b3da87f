/*
The sync package implements the algorithm that decides which remote files
are fetched for a request.

The server publishes each (asset class, frequency) pair in several buckets:
monthly, daily, hourly and minutely directories. Every file covers the period
encoded in its name, so the same instant is usually available from more than
one bucket.

Directories are scanned broadest bucket first. A file is fetched if its period
overlaps the requested period, and isn't already covered by the files that
earlier directories supplied. Coverage is tracked as a single envelope from
the earliest start to the latest end that's been fetched so far, so a gap
between two coarse files is treated as covered. Finer buckets therefore only
contribute the periods at the edges of the request that coarser buckets
haven't been published for yet.

Matched files are handed to an output.Sink one at a time. The partial result
of each file is merged into an accumulator that's owned by the scan, so the
planner keeps no state between requests.

A directory that doesn't exist contributes no files. Any other error aborts
the request, and nothing is retried.
*/
package sync
