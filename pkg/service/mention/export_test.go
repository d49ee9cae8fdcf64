package mention

// RewriteLinks is exported for testing
var RewriteLinks = rewriteLinks
