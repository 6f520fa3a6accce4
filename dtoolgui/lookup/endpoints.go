package lookup

// Routes of the lookup server, relative to its base URL
const (
	endpointConfigInfo     = "/config/info"
	endpointConfigVersions = "/config/versions"
	endpointDatasetList    = "/dataset/list"
	endpointDatasetSearch  = "/dataset/search"
	endpointDatasetLookup  = "/dataset/lookup/%s"
	endpointDatasetReadme  = "/dataset/readme"
	endpointManifest       = "/dataset/manifest"
	endpointSummary        = "/dataset/summary"
	endpointMongoQuery     = "/mongo/query"
	endpointGraphLookup    = "/graph/lookup/%s"
	endpointBaseURIs       = "/base_uris"
	endpointUserInfo       = "/users/%s"
)

const (
	headerPagination = "X-Pagination"
	headerSort       = "X-Sort"
)
