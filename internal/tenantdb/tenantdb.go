package tenantdb

import (
	"errors"
	"reflect"

	"xamu/internal/models"
	"xamu/internal/tenantctx"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tenantdb 是GORM插件：对实现 models.TenantOwned 的模型，
// 读操作自动追加 tenant_id 过滤，写操作自动注入当前租户，
// 并在持久化前拒绝租户归属变更和跨租户删除。
// 当前租户来自 statement 的 context（见 tenantctx），
// 通过 AllTenants / ForTenant 可按查询链显式改变作用域。

var (
	// ErrNoTenant 配置错误：context中没有租户且未显式指定
	ErrNoTenant = errors.New("tenantdb: 当前context没有租户，且未显式指定租户")

	// ErrTenantImmutable 记录创建后租户归属不可变更
	ErrTenantImmutable = errors.New("tenantdb: 记录的租户归属不可变更")

	// ErrCrossTenant 当前租户与记录归属不一致
	ErrCrossTenant = errors.New("tenantdb: 不能操作其他租户的记录")
)

// 查询链作用域设置键
// db.Set 的设置随查询链克隆传递，不会泄漏到兄弟查询
const (
	settingAllTenants = "tenantdb:all_tenants"
	settingTenantID   = "tenantdb:tenant_id"
)

// AllTenants 对本查询链关闭租户过滤
// 仅限管理面和运维场景使用
func AllTenants(db *gorm.DB) *gorm.DB {
	return db.Set(settingAllTenants, true)
}

// ForTenant 对本查询链强制指定租户，覆盖context中的值
func ForTenant(db *gorm.DB, tenantID uint) *gorm.DB {
	return db.Set(settingTenantID, tenantID)
}

// Plugin GORM插件实现
type Plugin struct{}

// New 创建插件实例
func New() *Plugin {
	return &Plugin{}
}

// Name 插件名
func (*Plugin) Name() string {
	return "tenantdb"
}

// Initialize 注册回调
func (p *Plugin) Initialize(db *gorm.DB) error {
	// 注入要在模型钩子（BeforeSave等）之前完成，
	// 这样钩子里的同租户校验能看到最终的tenant_id
	if err := db.Callback().Create().Before("gorm:before_create").Register("tenantdb:assign_create", assignCreate); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("tenantdb:scope_query", scopeQuery); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenantdb:scope_row", scopeQuery); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:before_update").Register("tenantdb:guard_update", guardUpdate); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:before_delete").Register("tenantdb:guard_delete", guardDelete); err != nil {
		return err
	}
	return nil
}

// scopeQuery 读操作：追加 tenant_id 过滤
func scopeQuery(db *gorm.DB) {
	if !isTenantOwned(db) {
		return
	}
	if skipScope(db) {
		return
	}

	tenantID, ok := resolveTenantID(db)
	if !ok {
		_ = db.AddError(ErrNoTenant)
		return
	}

	addTenantFilter(db, tenantID)
}

// assignCreate 创建操作：为未显式指定租户的记录注入当前租户
func assignCreate(db *gorm.DB) {
	if !isTenantOwned(db) {
		return
	}

	tenantID, hasTenant := resolveTenantID(db)

	applied := forEachDest(db, func(owned models.TenantOwned) bool {
		if owned.GetTenantID() != 0 {
			return true
		}
		if !hasTenant {
			return false
		}
		owned.SetTenantID(tenantID)
		return true
	})

	if !applied {
		_ = db.AddError(ErrNoTenant)
	}
}

// guardUpdate 更新操作：拒绝租户归属变更，并追加租户过滤
func guardUpdate(db *gorm.DB) {
	if !isTenantOwned(db) {
		return
	}
	stmt := db.Statement

	// map更新中显式出现tenant_id即视为变更企图，直接拒绝
	if values, ok := stmt.Dest.(map[string]interface{}); ok {
		for _, key := range []string{"tenant_id", "TenantID"} {
			if _, present := values[key]; present {
				_ = db.AddError(ErrTenantImmutable)
				return
			}
		}
	}

	// 实例更新：对比库中已存储的tenant_id与内存值
	pk, memTenant := extractIdentity(db)
	if pk != 0 && memTenant != 0 {
		stored, found := storedTenantID(db, pk)
		if found && stored != 0 && stored != memTenant {
			_ = db.AddError(ErrTenantImmutable)
			return
		}
	}

	if skipScope(db) {
		return
	}
	tenantID, ok := resolveTenantID(db)
	if !ok {
		_ = db.AddError(ErrNoTenant)
		return
	}
	addTenantFilter(db, tenantID)
}

// guardDelete 删除操作：拒绝跨租户删除，并追加租户过滤
func guardDelete(db *gorm.DB) {
	if !isTenantOwned(db) {
		return
	}

	// context租户与实例归属不一致时拒绝
	if ctxTenant, ok := tenantctx.FromContext(db.Statement.Context); ok {
		if _, memTenant := extractIdentity(db); memTenant != 0 && memTenant != ctxTenant.ID {
			_ = db.AddError(ErrCrossTenant)
			return
		}
	}

	if skipScope(db) {
		return
	}
	tenantID, ok := resolveTenantID(db)
	if !ok {
		_ = db.AddError(ErrNoTenant)
		return
	}
	addTenantFilter(db, tenantID)
}

// isTenantOwned 判断statement操作的模型是否参与租户隔离
func isTenantOwned(db *gorm.DB) bool {
	stmt := db.Statement
	if stmt.Schema == nil {
		if stmt.Model != nil {
			_ = stmt.Parse(stmt.Model)
		} else if stmt.Dest != nil {
			_ = stmt.Parse(stmt.Dest)
		}
	}
	if stmt.Schema == nil {
		return false
	}
	_, ok := reflect.New(stmt.Schema.ModelType).Interface().(models.TenantOwned)
	return ok
}

// skipScope 本查询链是否关闭了租户过滤
func skipScope(db *gorm.DB) bool {
	_, ok := db.Get(settingAllTenants)
	return ok
}

// resolveTenantID 解析本次操作的租户：显式指定优先，其次取context
func resolveTenantID(db *gorm.DB) (uint, bool) {
	if v, ok := db.Get(settingTenantID); ok {
		if id, isUint := v.(uint); isUint && id != 0 {
			return id, true
		}
	}
	if tenant, ok := tenantctx.FromContext(db.Statement.Context); ok {
		return tenant.ID, true
	}
	return 0, false
}

// addTenantFilter 追加表限定的tenant_id过滤条件
func addTenantFilter(db *gorm.DB, tenantID uint) {
	db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: "tenant_id"},
			Value:  tenantID,
		},
	}})
}

// forEachDest 遍历创建目标（单个实例或切片），对每个租户归属实体执行fn
// fn返回false表示该实体缺租户且无法注入
func forEachDest(db *gorm.DB, fn func(owned models.TenantOwned) bool) bool {
	rv := reflect.ValueOf(db.Statement.Dest)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			for elem.Kind() == reflect.Ptr {
				elem = elem.Elem()
			}
			if !elem.CanAddr() {
				continue
			}
			if owned, ok := elem.Addr().Interface().(models.TenantOwned); ok {
				if !fn(owned) {
					return false
				}
			}
		}
		return true
	case reflect.Struct:
		if !rv.CanAddr() {
			return true
		}
		if owned, ok := rv.Addr().Interface().(models.TenantOwned); ok {
			return fn(owned)
		}
		return true
	default:
		return true
	}
}

// extractIdentity 从statement目标实例提取主键和内存中的tenant_id
func extractIdentity(db *gorm.DB) (pk uint, tenantID uint) {
	stmt := db.Statement
	target := stmt.Model
	if target == nil {
		target = stmt.Dest
	}
	if target == nil {
		return 0, 0
	}

	rv := reflect.ValueOf(target)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return 0, 0
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return 0, 0
	}

	if !rv.CanAddr() {
		// 不可寻址时复制一份再取值
		copied := reflect.New(rv.Type())
		copied.Elem().Set(rv)
		rv = copied.Elem()
	}

	if owned, ok := rv.Addr().Interface().(models.TenantOwned); ok {
		tenantID = owned.GetTenantID()
	}

	idField := rv.FieldByName("ID")
	if idField.IsValid() && idField.CanUint() {
		pk = uint(idField.Uint())
	}
	return pk, tenantID
}

// storedTenantID 查询库中记录当前的tenant_id
func storedTenantID(db *gorm.DB, pk uint) (uint, bool) {
	stmt := db.Statement
	table := stmt.Table
	if table == "" && stmt.Schema != nil {
		table = stmt.Schema.Table
	}
	if table == "" {
		return 0, false
	}

	var stored *uint
	row := db.Session(&gorm.Session{NewDB: true}).
		Table(table).
		Select("tenant_id").
		Where("id = ?", pk).
		Row()
	if err := row.Scan(&stored); err != nil || stored == nil {
		return 0, false
	}
	return *stored, true
}
