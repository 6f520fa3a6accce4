package config

// Keys of the persisted dtool config file
const (
	KeyLocalBaseURI        = "DTOOL_LOCAL_BASE_URI"
	KeyRemoteBaseURI       = "DTOOL_REMOTE_BASE_URI"
	KeyReadmeTemplateFPath = "DTOOL_README_TEMPLATE_FPATH"
	KeyUserFullName        = "DTOOL_USER_FULL_NAME"
	KeyUserEmail           = "DTOOL_USER_EMAIL"

	KeyLookupServerURL       = "DTOOL_LOOKUP_SERVER_URL"
	KeyLookupServerToken     = "DTOOL_LOOKUP_SERVER_TOKEN"
	KeyLookupServerAuthURL   = "DTOOL_LOOKUP_SERVER_TOKEN_GENERATOR_URL"
	KeyLookupServerUsername  = "DTOOL_LOOKUP_SERVER_USERNAME"
	KeyLookupServerVerifySSL = "DTOOL_LOOKUP_SERVER_VERIFY_SSL"

	KeyS3DatasetPrefix = "DTOOL_S3_DATASET_PREFIX"
)

// Per-endpoint key prefixes; the endpoint name is appended.
const (
	PrefixS3Endpoint        = "DTOOL_S3_ENDPOINT_"
	PrefixS3AccessKeyID     = "DTOOL_S3_ACCESS_KEY_ID_"
	PrefixS3SecretAccessKey = "DTOOL_S3_SECRET_ACCESS_KEY_"
	PrefixS3DatasetPrefix   = "DTOOL_S3_DATASET_PREFIX_"

	PrefixSMBServerName  = "DTOOL_SMB_SERVER_NAME_"
	PrefixSMBServerPort  = "DTOOL_SMB_SERVER_PORT_"
	PrefixSMBServiceName = "DTOOL_SMB_SERVICE_NAME_"
	PrefixSMBPath        = "DTOOL_SMB_PATH_"
	PrefixSMBDomain      = "DTOOL_SMB_DOMAIN_"
	PrefixSMBUsername    = "DTOOL_SMB_USERNAME_"
	PrefixSMBPassword    = "DTOOL_SMB_PASSWORD_"
)
