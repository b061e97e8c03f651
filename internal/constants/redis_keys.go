package constants

// Redis Key 前缀和格式常量
// 统一的命名规范: ingest:{tenant}:{module}:{entity}
const (
	// AppPrefix 所有Redis Key的统一应用前缀
	AppPrefix = "ingest"

	// TenantPlaceholder 键常量中的租户占位符，FormatKey时替换为实际租户ID
	TenantPlaceholder = "{tenant}"

	// FingerprintModulePrefix 指纹模块
	FingerprintModulePrefix = "fingerprint"
	// IdentityModulePrefix 身份模块
	IdentityModulePrefix = "identity"

	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityLock 分布式锁实体
	EntityLock = "lock"

	// ContentHashSetKey 内容指纹集合 (SET)，"查找->判定->提交"竞态的快速通道兜底
	// 格式: ingest:{tenant}:fingerprint:dedup_set
	ContentHashSetKey = AppPrefix + ":" + TenantPlaceholder + ":" + FingerprintModulePrefix + ":" + EntityDedupSet

	// PersonLockKeyPrefix 按人员软标识加的判定锁 (STRING)
	// 格式: ingest:{tenant}:identity:lock:{person_soft_id}
	PersonLockKeyPrefix = AppPrefix + ":" + TenantPlaceholder + ":" + IdentityModulePrefix + ":" + EntityLock + ":"
)
