package repo

import "fmt"

// Item is a row of one repository table.
type Item interface {
	// RepoKey returns the row's primary key. Keys sort in primary key order.
	RepoKey() string
}

func idKey(id uint32) string {
	return fmt.Sprintf("%010d", id)
}

// ChunkServerRepoItem is a chunkserver row.
type ChunkServerRepoItem struct {
	ChunkServerID  uint32 `json:"chunkserver_id"`
	Token          string `json:"token"`
	DiskType       string `json:"disk_type"`
	InternalHostIP string `json:"internal_host_ip"`
	Port           uint32 `json:"port"`
	MountPoint     string `json:"mount_point"`
	Capacity       uint64 `json:"capacity"`
	Used           uint64 `json:"used"`
	RWStatus       int32  `json:"rw_status"`
	DiskState      int32  `json:"disk_state"`
	ServerID       uint32 `json:"server_id"`
	OnlineState    int32  `json:"online_state"`
}

func (i ChunkServerRepoItem) RepoKey() string { return idKey(i.ChunkServerID) }

// ChunkServerKey returns the key of a chunkserver row.
func ChunkServerKey(id uint32) string { return idKey(id) }

// ServerRepoItem is a server row.
type ServerRepoItem struct {
	ServerID       uint32 `json:"server_id"`
	HostName       string `json:"host_name"`
	InternalHostIP string `json:"internal_host_ip"`
	InternalPort   uint32 `json:"internal_port"`
	ExternalHostIP string `json:"external_host_ip"`
	ExternalPort   uint32 `json:"external_port"`
	ZoneID         uint32 `json:"zone_id"`
	PoolID         uint32 `json:"pool_id"`
	Desc           string `json:"desc"`
}

func (i ServerRepoItem) RepoKey() string { return idKey(i.ServerID) }

// ServerKey returns the key of a server row.
func ServerKey(id uint32) string { return idKey(id) }

// ZoneRepoItem is a zone row.
type ZoneRepoItem struct {
	ZoneID   uint32 `json:"zone_id"`
	ZoneName string `json:"zone_name"`
	PoolID   uint32 `json:"pool_id"`
	Desc     string `json:"desc"`
}

func (i ZoneRepoItem) RepoKey() string { return idKey(i.ZoneID) }

// ZoneKey returns the key of a zone row.
func ZoneKey(id uint32) string { return idKey(id) }

// PhysicalPoolRepoItem is a physical pool row.
type PhysicalPoolRepoItem struct {
	PhysicalPoolID   uint32 `json:"physical_pool_id"`
	PhysicalPoolName string `json:"physical_pool_name"`
	Desc             string `json:"desc"`
}

func (i PhysicalPoolRepoItem) RepoKey() string { return idKey(i.PhysicalPoolID) }

// PhysicalPoolKey returns the key of a physical pool row.
func PhysicalPoolKey(id uint32) string { return idKey(id) }

// LogicalPoolRepoItem is a logical pool row.
type LogicalPoolRepoItem struct {
	LogicalPoolID                uint32 `json:"logical_pool_id"`
	LogicalPoolName              string `json:"logical_pool_name"`
	PhysicalPoolID               uint32 `json:"physical_pool_id"`
	Type                         int32  `json:"type"`
	InitialScatterWidth          uint32 `json:"initial_scatter_width"`
	CreateTime                   int64  `json:"create_time"`
	Status                       int32  `json:"status"`
	RedundanceAndPlacementPolicy string `json:"redundance_and_placement_policy"`
	UserPolicy                   string `json:"user_policy"`
	AvailFlag                    bool   `json:"avail_flag"`
}

func (i LogicalPoolRepoItem) RepoKey() string { return idKey(i.LogicalPoolID) }

// LogicalPoolKey returns the key of a logical pool row.
func LogicalPoolKey(id uint32) string { return idKey(id) }

// CopySetRepoItem is a copyset row. Copyset ids are unique per logical pool.
type CopySetRepoItem struct {
	CopySetID         uint32 `json:"copyset_id"`
	LogicalPoolID     uint32 `json:"logical_pool_id"`
	Epoch             uint64 `json:"epoch"`
	ChunkServerIDList string `json:"chunkserver_id_list"`
}

func (i CopySetRepoItem) RepoKey() string { return CopySetKey(i.LogicalPoolID, i.CopySetID) }

// CopySetKey returns the key of a copyset row.
func CopySetKey(logicalPoolID, copySetID uint32) string {
	return idKey(logicalPoolID) + "/" + idKey(copySetID)
}

// SessionRepoItem is a client session row.
type SessionRepoItem struct {
	SessionID     string `json:"session_id"`
	FileName      string `json:"file_name"`
	LeaseTime     uint32 `json:"lease_time"`
	SessionStatus int32  `json:"session_status"`
	CreateTime    uint64 `json:"create_time"`
	ClientIP      string `json:"client_ip"`
}

func (i SessionRepoItem) RepoKey() string { return i.SessionID }
