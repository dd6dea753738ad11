package review

// 权限等级，全序: MODERATOR < SENIOR_MODERATOR < ADMINISTRATOR
var authorityLevels = map[string]int{
	RoleModerator:       1,
	RoleSeniorModerator: 2,
	RoleAdministrator:   3,
}

// AuthorityLevel 返回角色的权限等级，未知角色为 0
func AuthorityLevel(role string) int {
	return authorityLevels[role]
}

// RequiredAuthority 返回动作所需的最低权限等级
// SUSPEND 限期封禁需要高级审核员，无限期封禁需要管理员。
func RequiredAuthority(actionType string, indefinite bool) int {
	switch actionType {
	case ActionDismiss, ActionWarn, ActionHide:
		return authorityLevels[RoleModerator]
	case ActionDelete, ActionShadowban:
		return authorityLevels[RoleSeniorModerator]
	case ActionSuspend:
		if indefinite {
			return authorityLevels[RoleAdministrator]
		}
		return authorityLevels[RoleSeniorModerator]
	default:
		// 未知动作按最高权限兜底，宁可拒绝不可放行
		return authorityLevels[RoleAdministrator] + 1
	}
}
