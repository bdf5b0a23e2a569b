// Package mysql is a MySQL storage adapter.
package mysql

import (
	"database/sql"
	"encoding/json"
	"errors"

	ms "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/seednode/pod/server/store"
	t "github.com/seednode/pod/server/store/types"
)

// adapter holds MySQL connection data.
type adapter struct {
	db     *sqlx.DB
	dsn    string
	dbName string
	uGen   *t.UidGenerator
}

const (
	defaultDSN      = "root:@tcp(localhost:3306)/pod?parseTime=true&collation=utf8mb4_unicode_ci"
	defaultDatabase = "pod"

	adapterName = "mysql"

	adapterVersion = 1
)

type configType struct {
	DSN    string `json:"dsn,omitempty"`
	DBName string `json:"database,omitempty"`
}

// Open initializes the MySQL session.
func (a *adapter) Open(jsonconfig json.RawMessage) error {
	if a.db != nil {
		return errors.New("mysql adapter is already connected")
	}

	var err error
	var config configType

	if len(jsonconfig) > 0 {
		if err = json.Unmarshal(jsonconfig, &config); err != nil {
			return errors.New("mysql adapter failed to parse config: " + err.Error())
		}
	}

	a.dsn = config.DSN
	if a.dsn == "" {
		a.dsn = defaultDSN
	}

	a.dbName = config.DBName
	if a.dbName == "" {
		a.dbName = defaultDatabase
	}

	a.db, err = sqlx.Open("mysql", a.dsn)
	if err != nil {
		return err
	}

	// sql.Open does not open the network connection.
	// Force network connection here.
	return a.db.Ping()
}

// Close closes the underlying database connection.
func (a *adapter) Close() error {
	var err error
	if a.db != nil {
		err = a.db.Close()
		a.db = nil
	}
	return err
}

// IsOpen returns true if connection to database has been established.
// It does not check if connection is actually live.
func (a *adapter) IsOpen() bool {
	return a.db != nil
}

// GetName returns string that adapter uses to register itself with store.
func (a *adapter) GetName() string {
	return adapterName
}

// SetUidGenerator remembers the generator used for new record ids.
func (a *adapter) SetUidGenerator(ug *t.UidGenerator) error {
	a.uGen = ug
	return nil
}

// Version returns adapter version.
func (a *adapter) Version() int {
	return adapterVersion
}

// Stats returns the DB connection pool stats.
func (a *adapter) Stats() interface{} {
	if a.db == nil {
		return nil
	}
	return a.db.Stats()
}

// CreateDb initializes the storage, optionally dropping the database first.
func (a *adapter) CreateDb(reset bool) error {
	var err error
	var tx *sql.Tx

	if tx, err = a.db.Begin(); err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if reset {
		if _, err = tx.Exec("DROP DATABASE IF EXISTS " + a.dbName); err != nil {
			return err
		}
	}

	if _, err = tx.Exec("CREATE DATABASE " + a.dbName +
		" CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"); err != nil {
		return err
	}

	if _, err = tx.Exec("USE " + a.dbName); err != nil {
		return err
	}

	if _, err = tx.Exec(
		`CREATE TABLE users(
			id			BIGINT UNSIGNED NOT NULL,
			createdat	DATETIME(3) NOT NULL,
			updatedat	DATETIME(3) NOT NULL,
			handle		VARCHAR(255) NOT NULL,
			privkey		TEXT,
			PRIMARY KEY(id),
			UNIQUE INDEX users_handle(handle)
		)`); err != nil {
		return err
	}

	if _, err = tx.Exec(
		`CREATE TABLE persons(
			id			BIGINT UNSIGNED NOT NULL,
			createdat	DATETIME(3) NOT NULL,
			updatedat	DATETIME(3) NOT NULL,
			handle		VARCHAR(255) NOT NULL,
			pubkey		TEXT,
			local		TINYINT NOT NULL DEFAULT 0,
			profile		JSON,
			PRIMARY KEY(id),
			UNIQUE INDEX persons_handle(handle)
		)`); err != nil {
		return err
	}

	if _, err = tx.Exec(
		`CREATE TABLE aspects(
			id			BIGINT UNSIGNED NOT NULL,
			createdat	DATETIME(3) NOT NULL,
			updatedat	DATETIME(3) NOT NULL,
			userid		BIGINT UNSIGNED NOT NULL,
			name		VARCHAR(255) NOT NULL,
			PRIMARY KEY(id),
			UNIQUE INDEX aspects_userid_name(userid, name)
		)`); err != nil {
		return err
	}

	if _, err = tx.Exec(
		`CREATE TABLE contacts(
			id			BIGINT UNSIGNED NOT NULL,
			createdat	DATETIME(3) NOT NULL,
			updatedat	DATETIME(3) NOT NULL,
			userid		BIGINT UNSIGNED NOT NULL,
			personid	BIGINT UNSIGNED NOT NULL,
			aspects		JSON,
			PRIMARY KEY(id),
			UNIQUE INDEX contacts_userid_personid(userid, personid)
		)`); err != nil {
		return err
	}

	if _, err = tx.Exec(
		`CREATE TABLE objects(
			id			BIGINT UNSIGNED NOT NULL,
			createdat	DATETIME(3) NOT NULL,
			updatedat	DATETIME(3) NOT NULL,
			guid		VARCHAR(191) NOT NULL,
			kind		VARCHAR(32) NOT NULL,
			author		BIGINT UNSIGNED NOT NULL,
			content		TEXT,
			parentguid	VARCHAR(191) NOT NULL DEFAULT '',
			mutable		TINYINT NOT NULL DEFAULT 0,
			refcount	INT NOT NULL DEFAULT 0,
			PRIMARY KEY(id),
			UNIQUE INDEX objects_guid(guid),
			INDEX objects_parentguid(parentguid),
			INDEX objects_author(author)
		)`); err != nil {
		return err
	}

	if _, err = tx.Exec(
		`CREATE TABLE visibility(
			id			BIGINT UNSIGNED NOT NULL,
			createdat	DATETIME(3) NOT NULL,
			updatedat	DATETIME(3) NOT NULL,
			userid		BIGINT UNSIGNED NOT NULL,
			guid		VARCHAR(191) NOT NULL,
			PRIMARY KEY(id),
			UNIQUE INDEX visibility_userid_guid(userid, guid),
			INDEX visibility_guid(guid)
		)`); err != nil {
		return err
	}

	return tx.Commit()
}

// UserCreate creates a local user record.
func (a *adapter) UserCreate(user *t.User) error {
	_, err := a.db.Exec(
		"INSERT INTO users(id,createdat,updatedat,handle,privkey) VALUES(?,?,?,?,?)",
		uint64(user.Uid()), user.CreatedAt, user.UpdatedAt, user.Handle, user.PrivKey)
	if isDupe(err) {
		return t.ErrDuplicate
	}
	return err
}

// UserGet loads a user by handle.
func (a *adapter) UserGet(handle string) (*t.User, error) {
	var id uint64
	var user t.User
	err := a.db.QueryRow(
		"SELECT id,createdat,updatedat,handle,privkey FROM users WHERE handle=?",
		handle).Scan(&id, &user.CreatedAt, &user.UpdatedAt, &user.Handle, &user.PrivKey)
	if err == sql.ErrNoRows {
		return nil, t.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.SetUid(t.Uid(id))
	return &user, nil
}

// PersonCreate inserts a person keyed by handle. On a duplicate handle the
// previously stored record is loaded and returned: the unique index closes
// the check-then-insert race between concurrent resolutions.
func (a *adapter) PersonCreate(person *t.Person) (*t.Person, bool, error) {
	profile, err := profileToJSON(person.Profile)
	if err != nil {
		return nil, false, err
	}
	_, err = a.db.Exec(
		"INSERT INTO persons(id,createdat,updatedat,handle,pubkey,local,profile) VALUES(?,?,?,?,?,?,?)",
		uint64(person.Uid()), person.CreatedAt, person.UpdatedAt, person.Handle,
		person.PubKey, person.Local, profile)
	if isDupe(err) {
		existing, err := a.PersonGet(person.Handle)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return person, true, nil
}

// PersonGet loads a person by handle.
func (a *adapter) PersonGet(handle string) (*t.Person, error) {
	return a.personGetBy("handle=?", handle)
}

// PersonGetByUid loads a person by internal id.
func (a *adapter) PersonGetByUid(uid t.Uid) (*t.Person, error) {
	return a.personGetBy("id=?", uint64(uid))
}

func (a *adapter) personGetBy(cond string, arg interface{}) (*t.Person, error) {
	var id uint64
	var profile sql.NullString
	var person t.Person
	err := a.db.QueryRow(
		"SELECT id,createdat,updatedat,handle,pubkey,local,profile FROM persons WHERE "+cond,
		arg).Scan(&id, &person.CreatedAt, &person.UpdatedAt, &person.Handle,
		&person.PubKey, &person.Local, &profile)
	if err == sql.ErrNoRows {
		return nil, t.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	person.SetUid(t.Uid(id))
	if profile.Valid {
		var p t.Profile
		if err = json.Unmarshal([]byte(profile.String), &p); err != nil {
			return nil, err
		}
		person.Profile = &p
	}
	return &person, nil
}

// PersonUpdateProfile replaces the cached profile of a person.
func (a *adapter) PersonUpdateProfile(uid t.Uid, profile *t.Profile) error {
	blob, err := profileToJSON(profile)
	if err != nil {
		return err
	}
	res, err := a.db.Exec("UPDATE persons SET profile=?,updatedat=? WHERE id=?",
		blob, t.TimeNow(), uint64(uid))
	if err != nil {
		return err
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return t.ErrNotFound
	}
	return nil
}

// AspectCreate inserts an aspect.
func (a *adapter) AspectCreate(aspect *t.Aspect) error {
	_, err := a.db.Exec(
		"INSERT INTO aspects(id,createdat,updatedat,userid,name) VALUES(?,?,?,?,?)",
		uint64(aspect.Uid()), aspect.CreatedAt, aspect.UpdatedAt,
		uint64(aspect.UserId), aspect.Name)
	if isDupe(err) {
		return t.ErrDuplicate
	}
	return err
}

// AspectsForUser loads all aspects owned by the user.
func (a *adapter) AspectsForUser(uid t.Uid) ([]t.Aspect, error) {
	rows, err := a.db.Queryx(
		"SELECT id,createdat,updatedat,userid,name FROM aspects WHERE userid=?",
		uint64(uid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []t.Aspect
	for rows.Next() {
		var id, userid uint64
		var aspect t.Aspect
		if err = rows.Scan(&id, &aspect.CreatedAt, &aspect.UpdatedAt, &userid,
			&aspect.Name); err != nil {
			return nil, err
		}
		aspect.SetUid(t.Uid(id))
		aspect.UserId = t.Uid(userid)
		out = append(out, aspect)
	}
	return out, rows.Err()
}

// ContactCreate inserts a contact edge.
func (a *adapter) ContactCreate(contact *t.Contact) error {
	aspects, err := json.Marshal(contact.Aspects)
	if err != nil {
		return err
	}
	_, err = a.db.Exec(
		"INSERT INTO contacts(id,createdat,updatedat,userid,personid,aspects) VALUES(?,?,?,?,?,?)",
		uint64(contact.Uid()), contact.CreatedAt, contact.UpdatedAt,
		uint64(contact.UserId), uint64(contact.PersonId), aspects)
	if isDupe(err) {
		return t.ErrDuplicate
	}
	return err
}

// ContactGet loads the contact edge owner -> person.
func (a *adapter) ContactGet(ownerUid, personUid t.Uid) (*t.Contact, error) {
	var id uint64
	var aspects []byte
	var contact t.Contact
	err := a.db.QueryRow(
		"SELECT id,createdat,updatedat,aspects FROM contacts WHERE userid=? AND personid=?",
		uint64(ownerUid), uint64(personUid)).Scan(&id, &contact.CreatedAt,
		&contact.UpdatedAt, &aspects)
	if err == sql.ErrNoRows {
		return nil, t.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	contact.SetUid(t.Uid(id))
	contact.UserId = ownerUid
	contact.PersonId = personUid
	if len(aspects) > 0 {
		if err = json.Unmarshal(aspects, &contact.Aspects); err != nil {
			return nil, err
		}
	}
	return &contact, nil
}

// ContactDelete removes the contact edge owner -> person.
func (a *adapter) ContactDelete(ownerUid, personUid t.Uid) error {
	res, err := a.db.Exec("DELETE FROM contacts WHERE userid=? AND personid=?",
		uint64(ownerUid), uint64(personUid))
	if err != nil {
		return err
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return t.ErrNotFound
	}
	return nil
}

// ObjectCreate inserts the object if the guid is still free. On a duplicate
// guid the stored object is returned unchanged.
func (a *adapter) ObjectCreate(obj *t.Object) (*t.Object, bool, error) {
	_, err := a.db.Exec(
		"INSERT INTO objects(id,createdat,updatedat,guid,kind,author,content,parentguid,mutable,refcount) "+
			"VALUES(?,?,?,?,?,?,?,?,?,0)",
		uint64(obj.Uid()), obj.CreatedAt, obj.UpdatedAt, obj.Guid, string(obj.Kind),
		uint64(obj.Author), obj.Content, obj.ParentGuid, obj.Mutable)
	if isDupe(err) {
		existing, err := a.ObjectGet(obj.Guid)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

// ObjectGet loads an object by guid.
func (a *adapter) ObjectGet(guid string) (*t.Object, error) {
	obj, err := objectGet(a.db, guid, false)
	if err == sql.ErrNoRows {
		return nil, t.ErrNotFound
	}
	return obj, err
}

func objectGet(q sqlx.Queryer, guid string, forUpdate bool) (*t.Object, error) {
	query := "SELECT id,createdat,updatedat,guid,kind,author,content,parentguid,mutable,refcount " +
		"FROM objects WHERE guid=?"
	if forUpdate {
		query += " FOR UPDATE"
	}
	var id, author uint64
	var kind string
	var obj t.Object
	err := q.QueryRowx(query, guid).Scan(&id, &obj.CreatedAt, &obj.UpdatedAt,
		&obj.Guid, &kind, &author, &obj.Content, &obj.ParentGuid, &obj.Mutable,
		&obj.RefCount)
	if err != nil {
		return nil, err
	}
	obj.SetUid(t.Uid(id))
	obj.Kind = t.ObjectKind(kind)
	obj.Author = t.Uid(author)
	return &obj, nil
}

// ObjectUpdateContent overwrites the mutable content of an object.
func (a *adapter) ObjectUpdateContent(guid string, content string) error {
	res, err := a.db.Exec("UPDATE objects SET content=?,updatedat=? WHERE guid=?",
		content, t.TimeNow(), guid)
	if err != nil {
		return err
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return t.ErrNotFound
	}
	return nil
}

// CommentsForParent loads all comments attached to the given parent guid.
func (a *adapter) CommentsForParent(parentGuid string) ([]t.Object, error) {
	rows, err := a.db.Queryx(
		"SELECT id,createdat,updatedat,guid,kind,author,content,parentguid,mutable,refcount "+
			"FROM objects WHERE parentguid=? AND kind=?",
		parentGuid, string(t.KindComment))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []t.Object
	for rows.Next() {
		var id, author uint64
		var kind string
		var obj t.Object
		if err = rows.Scan(&id, &obj.CreatedAt, &obj.UpdatedAt, &obj.Guid, &kind,
			&author, &obj.Content, &obj.ParentGuid, &obj.Mutable,
			&obj.RefCount); err != nil {
			return nil, err
		}
		obj.SetUid(t.Uid(id))
		obj.Kind = t.ObjectKind(kind)
		obj.Author = t.Uid(author)
		out = append(out, obj)
	}
	return out, rows.Err()
}

// VisibilityAdd records that the object is exposed to the user. The object
// row is locked for the duration of the transaction so the reference count
// always matches the number of visibility records.
func (a *adapter) VisibilityAdd(uid t.Uid, guid string) (bool, error) {
	tx, err := a.db.Beginx()
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = objectGet(tx, guid, true); err != nil {
		if err == sql.ErrNoRows {
			err = t.ErrNotFound
		}
		return false, err
	}

	now := t.TimeNow()
	_, err = tx.Exec(
		"INSERT INTO visibility(id,createdat,updatedat,userid,guid) VALUES(?,?,?,?,?)",
		uint64(a.uGen.Get()), now, now, uint64(uid), guid)
	if isDupe(err) {
		err = nil
		return false, tx.Commit()
	}
	if err != nil {
		return false, err
	}

	if _, err = tx.Exec("UPDATE objects SET refcount=refcount+1 WHERE guid=?", guid); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// VisibilityRemove deletes the (user, guid) record. The object row is locked
// before the count is read, so two racing removes of the last two references
// serialize: exactly one of them observes count zero and garbage-collects the
// object together with its orphaned comments.
func (a *adapter) VisibilityRemove(uid t.Uid, guid string) (bool, error) {
	tx, err := a.db.Beginx()
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.Exec("DELETE FROM visibility WHERE userid=? AND guid=?",
		uint64(uid), guid)
	if err != nil {
		return false, err
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return false, tx.Commit()
	}

	var obj *t.Object
	obj, err = objectGet(tx, guid, true)
	if err != nil {
		if err == sql.ErrNoRows {
			// Already collected by a concurrent remove.
			err = nil
			return false, tx.Commit()
		}
		return false, err
	}

	if obj.RefCount > 1 {
		if _, err = tx.Exec("UPDATE objects SET refcount=refcount-1 WHERE guid=?", guid); err != nil {
			return false, err
		}
		return false, tx.Commit()
	}

	// Last reference is gone: delete the object, its comments and any
	// visibility records still pointing at them.
	if _, err = tx.Exec(
		"DELETE v FROM visibility v JOIN objects o ON v.guid=o.guid "+
			"WHERE o.guid=? OR (o.parentguid=? AND o.kind=?)",
		guid, guid, string(t.KindComment)); err != nil {
		return false, err
	}
	if _, err = tx.Exec("DELETE FROM objects WHERE guid=? OR (parentguid=? AND kind=?)",
		guid, guid, string(t.KindComment)); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// VisibilityCount returns the pod-wide number of visibility records for the guid.
func (a *adapter) VisibilityCount(guid string) (int, error) {
	var count int
	err := a.db.QueryRow("SELECT COUNT(*) FROM visibility WHERE guid=?", guid).Scan(&count)
	return count, err
}

// VisibleGuids returns the guids currently exposed to the user.
func (a *adapter) VisibleGuids(uid t.Uid) ([]string, error) {
	var out []string
	err := a.db.Select(&out, "SELECT guid FROM visibility WHERE userid=?", uint64(uid))
	return out, err
}

// GuidsAuthoredBy returns guids of objects authored by the person which are
// currently visible to the user.
func (a *adapter) GuidsAuthoredBy(personUid, visibleTo t.Uid) ([]string, error) {
	var out []string
	err := a.db.Select(&out,
		"SELECT v.guid FROM visibility v JOIN objects o ON v.guid=o.guid "+
			"WHERE v.userid=? AND o.author=?",
		uint64(visibleTo), uint64(personUid))
	return out, err
}

func profileToJSON(profile *t.Profile) (interface{}, error) {
	if profile == nil {
		return nil, nil
	}
	return json.Marshal(profile)
}

// Check if MySQL error is a duplicate key error.
func isDupe(err error) bool {
	myerr, ok := err.(*ms.MySQLError)
	return ok && myerr.Number == 1062
}

func init() {
	store.RegisterAdapter(&adapter{})
}
