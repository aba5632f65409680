package scope

// Azure DevOps (VSTS) personal access token scopes.
var (
	VstsNone                = New()
	VstsBuildAccess         = New("vso.build")
	VstsBuildExecute        = New("vso.build_execute")
	VstsChatWrite           = New("vso.chat_write")
	VstsChatManage          = New("vso.chat_manage")
	VstsCodeAccess          = New("vso.code")
	VstsCodeWrite           = New("vso.code_write")
	VstsCodeManage          = New("vso.code_manage")
	VstsCodeStatus          = New("vso.code_status")
	VstsEntitlementsRead    = New("vso.entitlements")
	VstsExtensionsRead      = New("vso.extension")
	VstsExtensionsManage    = New("vso.extension_manage")
	VstsExtensionDataRead   = New("vso.extension.data")
	VstsExtensionDataWrite  = New("vso.extension.data_write")
	VstsIdentityRead        = New("vso.identity")
	VstsPackagingRead       = New("vso.packaging")
	VstsPackagingWrite      = New("vso.packaging_write")
	VstsPackagingManage     = New("vso.packaging_manage")
	VstsProfileRead         = New("vso.profile")
	VstsProjectRead         = New("vso.project")
	VstsProjectWrite        = New("vso.project_write")
	VstsProjectManage       = New("vso.project_manage")
	VstsReleaseRead         = New("vso.release")
	VstsReleaseExecute      = New("vso.release_execute")
	VstsReleaseManage       = New("vso.release_manage")
	VstsServiceEndpointRead = New("vso.serviceendpoint")
	VstsTestRead            = New("vso.test")
	VstsTestWrite           = New("vso.test_write")
	VstsWorkRead            = New("vso.work")
	VstsWorkWrite           = New("vso.work_write")
)

// VstsDefault is what git needs: read/write code and package feeds.
var VstsDefault = VstsCodeWrite.Union(VstsPackagingRead)
