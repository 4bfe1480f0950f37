package cmd

// Process exit codes returned through cli.Exit.
const (
	exitSuccess = 0
	// exitFailure covers bad flags, bad config and failed requests.
	exitFailure = 1
	// exitLinkFailure means the link could not be opened or broke while serving.
	exitLinkFailure = 2
	// exitDeliveryFailure means buffered events were not delivered at shutdown.
	exitDeliveryFailure = 3
)
