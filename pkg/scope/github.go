package scope

// GitHub OAuth authorization scopes.
var (
	GitHubNone           = New()
	GitHubUser           = New("user")
	GitHubUserEmail      = New("user:email")
	GitHubUserFollow     = New("user:follow")
	GitHubPublicRepo     = New("public_repo")
	GitHubRepo           = New("repo")
	GitHubRepoDeployment = New("repo_deployment")
	GitHubRepoStatus     = New("repo:status")
	GitHubDeleteRepo     = New("delete_repo")
	GitHubNotifications  = New("notifications")
	GitHubGist           = New("gist")
	GitHubReadRepoHook   = New("read:repo_hook")
	GitHubWriteRepoHook  = New("write:repo_hook")
	GitHubAdminRepoHook  = New("admin:repo_hook")
	GitHubAdminOrgHook   = New("admin:org_hook")
	GitHubReadOrg        = New("read:org")
	GitHubWriteOrg       = New("write:org")
	GitHubAdminOrg       = New("admin:org")
	GitHubReadPublicKey  = New("read:public_key")
	GitHubWritePublicKey = New("write:public_key")
	GitHubAdminPublicKey = New("admin:public_key")
	GitHubReadGPGKey     = New("read:gpg_key")
	GitHubWriteGPGKey    = New("write:gpg_key")
	GitHubAdminGPGKey    = New("admin:gpg_key")
)

// GitHubDefault grants repository access and lets the token be validated against /user.
var GitHubDefault = GitHubGist.Union(GitHubRepo)
